package drive

import "errors"

// ErrFolderNotFound is returned when a path segment has no matching folder.
var ErrFolderNotFound = errors.New("folder not found")
