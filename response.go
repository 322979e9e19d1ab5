package blisp

// Response tags.
var (
	tagOK      = [2]byte{'O', 'K'}
	tagFail    = [2]byte{'F', 'L'}
	tagPending = [2]byte{'P', 'D'}
)

// Decode parses one response frame received from the boot ROM.
//
// An OK frame yields the bytes following the tag, which may be empty. A FL
// frame carries the error code at offset 2 and the category at offset 3 and
// is returned as a *DeviceError. Anything else is ErrInvalidResponse.
func Decode(raw []byte) ([]byte, error) {
	if len(raw) < 2 {
		return nil, ErrInvalidResponse
	}
	switch [2]byte{raw[0], raw[1]} {
	case tagOK:
		return raw[2:], nil
	case tagFail:
		if len(raw) < 4 {
			return nil, ErrInvalidResponse
		}
		code, category := raw[2], raw[3]
		kind, ok := lookupErrorKind(category, code)
		if !ok {
			return nil, ErrInvalidResponse
		}
		return nil, &DeviceError{
			Category: Category(category),
			Kind:     kind,
			Code:     code,
		}
	default:
		return nil, ErrInvalidResponse
	}
}

// isPending returns true if raw is an erase-in-progress status frame.
func isPending(raw []byte) bool {
	return len(raw) >= 2 && [2]byte{raw[0], raw[1]} == tagPending
}
