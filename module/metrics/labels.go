package metrics

const (
	LabelValidator   = "validator"
	LabelMessage     = "message"
	LabelCertificate = "certificate"
	LabelInteraction = "interaction"
	LabelResult      = "result"
	LabelComponent   = "component"
	LabelCategory    = "category"
	LabelOutcome     = "outcome"
)

const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)

func resultLabel(accepted bool) string {
	if accepted {
		return ResultAccepted
	}
	return ResultRejected
}
