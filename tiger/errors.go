package tiger

import "errors"

// ErrBadTreeData is returned by Deserialize when the input length,
// node count, or declared depth do not describe a valid tree.
var ErrBadTreeData = errors.New("tiger: invalid serialized tree data")
