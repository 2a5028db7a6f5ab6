package storage

import "ammdepth/internal/model"

// Storage defines a sink for computed depth snapshots.
type Storage interface {
	PutDepthSnapshot(data model.DepthData) error
}
