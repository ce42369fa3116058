package transport

import "github.com/corvid-systems/h2transport/transport/framecodec"

// buildHeaderBlock assembles the pseudo-headers and metadata for a new
// stream's HEADERS frame. Per §6: any AuthorityOverrideMetadataKey entry is
// removed from extra and becomes :authority instead of the connection's
// default; every other entry becomes an HTTP/2 header verbatim, subject to
// HPACK encoding by the caller.
func buildHeaderBlock(method *MethodDescriptor, scheme, defaultAuthority string, extra []Header) []framecodec.HeaderField {
	authority := defaultAuthority
	fields := make([]framecodec.HeaderField, 0, len(extra)+4)

	for _, h := range extra {
		if h.Name == AuthorityOverrideMetadataKey {
			authority = h.Value
			continue
		}
	}

	fields = append(fields,
		framecodec.HeaderField{Name: ":method", Value: "POST"},
		framecodec.HeaderField{Name: ":scheme", Value: scheme},
		framecodec.HeaderField{Name: ":path", Value: "/" + method.FullName},
		framecodec.HeaderField{Name: ":authority", Value: authority},
	)

	for _, h := range extra {
		if h.Name == AuthorityOverrideMetadataKey {
			continue
		}
		fields = append(fields, framecodec.HeaderField{Name: h.Name, Value: h.Value})
	}

	return fields
}
