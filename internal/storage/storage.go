package storage

import "rangeKeeper/internal/model"

// AlertSink defines a sink for alert records.
type AlertSink interface {
	PutAlertBatch(alerts []model.AlertRecord) error
}
