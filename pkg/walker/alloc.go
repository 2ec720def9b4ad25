package walker

import "github.com/marmos91/treewalk/pkg/catalogue"

// allocFunc allocates a zeroed byte slice of the given size.
//
// Every buffer the iterator owns (the path buffer and each level's record
// buffer) is obtained through the iterator's allocFunc. The default always
// succeeds; tests substitute a failing allocator to exercise the
// out-of-memory paths, which must leave the iterator's observable position
// unchanged.
type allocFunc func(size int) ([]byte, error)

func defaultAlloc(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func oomError(what string) error {
	return &catalogue.Error{Code: catalogue.ErrOutOfMemory, Message: what}
}
