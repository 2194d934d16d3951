package tasks

import (
	"errors"
	"fmt"

	"github.com/mikestefanello/backlite"
)

// TaskType describes a task staff can trigger by hand.
type TaskType struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

var taskTypes = []TaskType{
	{Type: QueueScanOverdueLoans, Description: "Record an audit event for every loan past its due date"},
	{Type: QueueExpireSubscriptions, Description: "Mark periodical subscriptions past their expiry as not current"},
	{Type: QueueCleanupAuditEvents, Description: "Delete audit events older than the retention period"},
}

func TaskTypes() []TaskType {
	out := make([]TaskType, len(taskTypes))
	copy(out, taskTypes)
	return out
}

// ErrUnknownTaskType is returned by NewTask for names it does not know.
var ErrUnknownTaskType = errors.New("unknown task type")

// NewTask builds a task from its queue name.
func NewTask(name string, auditRetentionDays int) (backlite.Task, error) {
	switch name {
	case QueueScanOverdueLoans:
		return ScanOverdueLoansTask{}, nil
	case QueueExpireSubscriptions:
		return ExpireSubscriptionsTask{}, nil
	case QueueCleanupAuditEvents:
		return CleanupAuditEventsTask{RetentionDays: auditRetentionDays}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, name)
}
