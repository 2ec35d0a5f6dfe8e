package requestactor

import (
	"log/slog"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpc"
)

// Sender is how an actor emits outbound frames; it is always the global
// state's single send path, never a direct write to the transport.
type Sender func(rpc.Message)

// notifier bundles a Sender with the origin id every notification on
// this request must carry, and the logger used for local diagnostics.
type notifier struct {
	send     Sender
	originId string
	logger   *slog.Logger
}

func (n *notifier) taskStart(taskId bsp.TaskId, message string, dataKind string, data any) {
	n.send(rpc.NewNotification(bsp.NotificationTaskStart, bsp.TaskStartParams{
		TaskId:   taskId,
		Message:  message,
		DataKind: dataKind,
		Data:     data,
	}))
}

func (n *notifier) taskProgress(taskId bsp.TaskId, message string, total, progress *int64, unit string) {
	n.send(rpc.NewNotification(bsp.NotificationTaskProgress, bsp.TaskProgressParams{
		TaskId:   taskId,
		Message:  message,
		Total:    total,
		Progress: progress,
		Unit:     unit,
	}))
}

func (n *notifier) taskFinish(taskId bsp.TaskId, status bsp.StatusCode, message string, dataKind string, data any) {
	n.send(rpc.NewNotification(bsp.NotificationTaskFinish, bsp.TaskFinishParams{
		TaskId:   taskId,
		Status:   status,
		Message:  message,
		DataKind: dataKind,
		Data:     data,
	}))
}

func (n *notifier) logMessage(messageType bsp.MessageType, message string, task *bsp.TaskId) {
	n.send(rpc.NewNotification(bsp.NotificationLogMessage, bsp.LogMessageParams{
		MessageType: messageType,
		Task:        task,
		OriginId:    n.originId,
		Message:     message,
	}))
}

func (n *notifier) publishDiagnostics(params bsp.PublishDiagnosticsParams) {
	params.OriginId = n.originId
	n.send(rpc.NewNotification(bsp.NotificationPublishDiagnostics, params))
}

func int64Ptr(v int64) *int64 { return &v }
