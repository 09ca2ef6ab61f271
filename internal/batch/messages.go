package batch

import (
	"mediabatch/internal/journal"
	"mediabatch/internal/model"
)

// Messages are the journal shapes a pipeline writes around each item.
type Messages struct {
	Started   string
	Completed string
	Failure   map[model.Reason]string
}

var defaultFailure = map[model.Reason]string{
	model.ReasonTransfer:       "Download error",
	model.ReasonExtraction:     "Extractor error",
	model.ReasonPostProcessing: "Post-processing error",
	model.ReasonUnexpected:     "An unexpected error occurred",
}

func (m Messages) withDefaults() Messages {
	if m.Started == "" {
		m.Started = "Started"
	}
	if m.Completed == "" {
		m.Completed = "Completed"
	}
	failure := make(map[model.Reason]string, len(defaultFailure))
	for k, v := range defaultFailure {
		failure[k] = v
	}
	for k, v := range m.Failure {
		failure[k] = v
	}
	m.Failure = failure
	return m
}

func (m Messages) journal(j *journal.Journal, o model.ItemOutcome) {
	switch o.Kind {
	case model.OutcomeCompleted:
		j.Infof("%s: %s", m.Completed, o.ItemID)
	case model.OutcomeSkipped:
		j.Infof("%s: %s", journal.MsgSkipped, o.ItemID)
	case model.OutcomeFailed:
		prefix, ok := m.Failure[o.Reason]
		if !ok {
			prefix = m.Failure[model.ReasonUnexpected]
		}
		j.Errorf("%s: %s - %s", prefix, o.ItemID, o.Detail)
	}
}
