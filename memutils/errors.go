package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// CorruptionError is returned from CheckCorruption when a debug marker written after an allocation
// has been overwritten
var CorruptionError error = errors.New("memory corruption detected after validated allocation")
