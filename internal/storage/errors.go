package storage

import "verigate/pkg/platform/sentinel"

// ErrNotFound keeps missing keys consistent across every backend.
var ErrNotFound = sentinel.ErrNotFound
