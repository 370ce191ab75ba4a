package enums

// SyncAction names the remote call a push resolved to.
type SyncAction string

const (
	SyncActionNone   SyncAction = "none"
	SyncActionCreate SyncAction = "create"
	SyncActionUpdate SyncAction = "update"
	SyncActionDelete SyncAction = "delete"
)

// String implements fmt.Stringer.
func (a SyncAction) String() string {
	return string(a)
}
