// Package printer implements the per-station print failover protocol.
// The backend attempts kitchen prints through its cloud printer
// registry; stations whose printers sit on the restaurant's private
// LAN are unreachable from the cloud and fall back to a bridge
// process running on the register workstation.
package printer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/restxqr/kasa/internal/enum"
	"github.com/restxqr/kasa/internal/order"
)

// StationResult is one station's cloud print outcome, as reported in
// the backend's order-update and print payloads.
type StationResult struct {
	Station   string       `json:"stationId"`
	Success   bool         `json:"success"`
	Error     string       `json:"error,omitempty"`
	IP        string       `json:"ip"`
	IsLocalIP bool         `json:"isLocalIP"`
	Items     []order.Line `json:"stationItems,omitempty"`
}

// Task tracks one station through the failover state machine:
// cloud-attempted, then (only on cloud failure against a local IP)
// bridge-attempted. A non-local IP failing cloud delivery has no
// fallback path and terminates failed.
type Task struct {
	ID              uuid.UUID    `json:"id"`
	Station         string       `json:"station"`
	StationIP       string       `json:"stationIp"`
	Items           []order.Line `json:"items,omitempty"`
	CloudAttempted  bool         `json:"cloudAttempted"`
	CloudSucceeded  bool         `json:"cloudSucceeded"`
	BridgeAttempted bool         `json:"bridgeAttempted"`
	BridgeSucceeded bool         `json:"bridgeSucceeded"`
	State           string       `json:"state"`
	Error           string       `json:"error,omitempty"`
}

// Job is the payload the bridge relays to a LAN thermal printer.
type Job struct {
	OrderNumber string       `json:"orderNumber"`
	TableNumber string       `json:"tableNumber"`
	Items       []order.Line `json:"items"`
	OrderNote   string       `json:"orderNote,omitempty"`
	Type        string       `json:"type,omitempty"`
}

// Bridge relays print jobs to printers on the local network.
type Bridge interface {
	Print(ctx context.Context, ip string, job Job) error
}

// Report aggregates one dispatch cycle. Success means every station
// either printed via cloud or recovered through the bridge; stations
// that already printed are never retried or rolled back; a physical
// receipt is not undoable.
type Report struct {
	Tasks   []Task `json:"tasks"`
	Success bool   `json:"success"`
}

// Dispatcher runs the bridge stage of the failover protocol.
type Dispatcher struct {
	bridge Bridge
	log    *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(bridge Bridge, log *slog.Logger) *Dispatcher {
	return &Dispatcher{bridge: bridge, log: log}
}

// Dispatch consumes the backend's per-station cloud results and
// attempts the bridge for every failed station with a local printer
// IP. Each station's outcome is recorded independently; one station
// failing never blocks another.
func (d *Dispatcher) Dispatch(ctx context.Context, orderNumber, tableNumber, orderNote string, results []StationResult) Report {
	report := Report{Success: true}

	for _, res := range results {
		task := Task{
			ID:             uuid.New(),
			Station:        res.Station,
			StationIP:      res.IP,
			Items:          res.Items,
			CloudAttempted: true,
			CloudSucceeded: res.Success,
		}

		switch {
		case res.Success:
			task.State = enum.PrintStateCloudSucceeded

		case res.IsLocalIP:
			d.log.Warn("cloud print failed, trying local bridge",
				"station", res.Station, "ip", res.IP, "order", orderNumber)

			task.BridgeAttempted = true
			err := d.bridge.Print(ctx, res.IP, Job{
				OrderNumber: orderNumber,
				TableNumber: tableNumber,
				Items:       res.Items,
				OrderNote:   orderNote,
				Type:        "KITCHEN",
			})
			if err != nil {
				task.State = enum.PrintStateBridgeFailed
				task.Error = err.Error()
				report.Success = false
				d.log.Error("bridge print failed",
					"station", res.Station, "ip", res.IP, "error", err)
			} else {
				task.BridgeSucceeded = true
				task.State = enum.PrintStateBridgeSucceeded
				d.log.Info("bridge print succeeded",
					"station", res.Station, "ip", res.IP)
			}

		default:
			// Cloud failed and the printer is not on the local
			// network: nothing left to try.
			task.State = enum.PrintStateFailed
			task.Error = res.Error
			report.Success = false
			d.log.Error("cloud print failed, no fallback",
				"station", res.Station, "ip", res.IP, "error", res.Error)
		}

		report.Tasks = append(report.Tasks, task)
	}

	return report
}
