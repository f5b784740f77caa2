package ingress

import "encoding/base64"

func encodeBase64(blob []byte) string {
	return base64.StdEncoding.EncodeToString(blob)
}
