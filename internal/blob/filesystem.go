package blob

import (
	"trackrecon/internal/infra/blob/fs"
)

// NewFilesystem returns a Store that writes blobs as plain files under root.
// A non-empty metaRoot keeps the metadata sidecars out of root.
func NewFilesystem(root, metaRoot string) (Store, error) {
	return fs.New(root, fs.WithMetaRoot(metaRoot))
}
