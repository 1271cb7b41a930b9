package consts

const (
	SessionRevokedKey = "storefront:session:revoked:"
	SnapshotKey       = "storefront:snapshot:"
)
