package wire

// Wire protocol tokens.
const (
	// IntPrefix starts an integer field: i<digits>s
	IntPrefix byte = 'i'

	// IntTerminator ends an integer field.
	IntTerminator byte = 's'

	// IntSign is the optional sign of a negative integer field.
	IntSign byte = '-'

	// StringSeparator separates the byte length from the payload: <len>:<bytes>
	StringSeparator byte = ':'
)

// Limits enforced while decoding.
const (
	// MaxStringLength bounds the declared length of a string field. Anything
	// larger is treated as a corrupted stream rather than waited for.
	MaxStringLength = 1 << 20

	// maxDigits bounds the digits accepted in a length prefix or an integer
	// (int64 has at most 19 digits).
	maxDigits = 19
)
