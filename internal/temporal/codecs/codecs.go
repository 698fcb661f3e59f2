// Package codecs configures Temporal payload encoding. Extracted contract
// text travels between activities, so payloads are zlib compressed.
package codecs

import "go.temporal.io/sdk/converter"

// NewDataConverter returns the default JSON converter wrapped with zlib
// compression.
func NewDataConverter() converter.DataConverter {
	return converter.NewCodecDataConverter(
		converter.GetDefaultDataConverter(),
		converter.NewZlibCodec(converter.ZlibCodecOptions{AlwaysEncode: true}),
	)
}
