package metrics

const (
	LabelResource = "resource"
	LabelReason   = "reason"
	LabelEngine   = "engine"
	LabelKind     = "kind"
)

const (
	ResourceUndefined = "undefined"
	ResourceBlock     = "block"
	ResourceSlotIndex = "slot_index"
)
