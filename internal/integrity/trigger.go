package integrity

// Trigger records which entity initiated a deletion.
type Trigger int

const (
	// TriggerSelf is a direct user request.
	TriggerSelf Trigger = iota
	TriggerOwningManifest
	TriggerOwningVariable
	TriggerOwningFile
	TriggerOwningCollection
)

func (t Trigger) String() string {
	switch t {
	case TriggerSelf:
		return "self"
	case TriggerOwningManifest:
		return "owning_manifest"
	case TriggerOwningVariable:
		return "owning_variable"
	case TriggerOwningFile:
		return "owning_file"
	case TriggerOwningCollection:
		return "owning_collection"
	default:
		return "unknown"
	}
}
