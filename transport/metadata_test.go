package transport

import (
	"testing"

	"github.com/corvid-systems/h2transport/transport/framecodec"
)

func TestBuildHeaderBlock(t *testing.T) {
	method := &MethodDescriptor{FullName: "pkg.Service/Method"}

	tests := []struct {
		name             string
		scheme           string
		defaultAuthority string
		extra            []Header
		wantAuthority    string
		wantExtra        []framecodec.HeaderField
	}{
		{
			name:             "default authority, no extra metadata",
			scheme:           "http",
			defaultAuthority: "example.com:80",
			wantAuthority:    "example.com:80",
		},
		{
			name:             "authority override strips the reserved key",
			scheme:           "https",
			defaultAuthority: "example.com:443",
			extra: []Header{
				{Name: AuthorityOverrideMetadataKey, Value: "override.example.com"},
				{Name: "x-request-id", Value: "abc123"},
			},
			wantAuthority: "override.example.com",
			wantExtra:     []framecodec.HeaderField{{Name: "x-request-id", Value: "abc123"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := buildHeaderBlock(method, tt.scheme, tt.defaultAuthority, tt.extra)

			want := map[string]string{
				":method":   "POST",
				":scheme":   tt.scheme,
				":path":     "/pkg.Service/Method",
				":authority": tt.wantAuthority,
			}
			got := map[string]string{}
			for _, f := range fields {
				got[f.Name] = f.Value
			}
			for k, v := range want {
				if got[k] != v {
					t.Errorf("fields[%q] = %q, want %q", k, got[k], v)
				}
			}

			for _, f := range fields {
				if f.Name == AuthorityOverrideMetadataKey {
					t.Errorf("authority override key leaked into the header block: %+v", f)
				}
			}

			var gotExtra []framecodec.HeaderField
			for _, f := range fields {
				switch f.Name {
				case ":method", ":scheme", ":path", ":authority":
				default:
					gotExtra = append(gotExtra, f)
				}
			}
			if len(gotExtra) != len(tt.wantExtra) {
				t.Fatalf("extra fields = %+v, want %+v", gotExtra, tt.wantExtra)
			}
			for i, f := range gotExtra {
				if f != tt.wantExtra[i] {
					t.Errorf("extra[%d] = %+v, want %+v", i, f, tt.wantExtra[i])
				}
			}
		})
	}
}
