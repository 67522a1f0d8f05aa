package recorder

import "encoding/base64"

// EncodePNGDataURI wraps raw PNG bytes in the data-URI form the rest of
// the pipeline (storage, export, backend) expects.
func EncodePNGDataURI(raw []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
}
