package ingest

import "testing"

const sharePageFixture = `<!DOCTYPE html>
<html>
<head>
<title>Airtable</title>
<script>var analytics = {enabled: true};</script>
<script>
window.__stashedPrefetch = {"headers":{"x-airtable-application-id":"appP16yvFUfongopF","x-airtable-page-load-id":"pglTestLoad01"}};
window.initData = {requestId: "reqAbc123", urlWithParams: "/v0.3/view/viwbD1NkdENbkpbVI/readSharedViewData?stringifiedObjectParams=%7B%7D&requestId=reqAbc123&accessPolicy=%7B%22allowedActions%22%3A%5B%5D%7D&other=1"};
</script>
</head>
<body><div id="root"></div></body>
</html>`

func TestExtractCredentialsFromHTML_AllFields(t *testing.T) {
	creds := ExtractCredentialsFromHTML(sharePageFixture)

	want := Credentials{
		ApplicationID: "appP16yvFUfongopF",
		PageLoadID:    "pglTestLoad01",
		RequestID:     "reqAbc123",
		AccessPolicy:  `{"allowedActions":[]}`,
	}
	if creds != want {
		t.Fatalf("expected %+v, got %+v", want, creds)
	}
	if missing := creds.Missing(); len(missing) != 0 {
		t.Fatalf("expected no missing fields, got %v", missing)
	}
}

func TestExtractCredentialsFromHTML_NoMarker(t *testing.T) {
	html := `<html><head><script>var x = {requestId: "reqShouldNotMatch"};</script></head></html>`

	creds := ExtractCredentialsFromHTML(html)
	if creds != (Credentials{}) {
		t.Fatalf("expected all fields absent without the prefetch marker, got %+v", creds)
	}
	if len(creds.Missing()) != 4 {
		t.Fatalf("expected 4 missing fields, got %v", creds.Missing())
	}
}

func TestExtractCredentialsFromHTML_FieldsFailIndependently(t *testing.T) {
	tests := []struct {
		name string
		blob string
		want Credentials
	}{
		{
			name: "only application id",
			blob: `window.__stashedPrefetch = {"x-airtable-application-id":"appOnly"};`,
			want: Credentials{ApplicationID: "appOnly"},
		},
		{
			name: "only page load id",
			blob: `window.__stashedPrefetch = {"x-airtable-page-load-id":"pglOnly"};`,
			want: Credentials{PageLoadID: "pglOnly"},
		},
		{
			name: "only request id",
			blob: `window.__stashedPrefetch = {}; x = {requestId:"reqOnly"};`,
			want: Credentials{RequestID: "reqOnly"},
		},
		{
			name: "url without access policy",
			blob: `window.__stashedPrefetch = {}; x = {urlWithParams: "/v0.3/view?requestId=abc"};`,
			want: Credentials{},
		},
		{
			name: "empty blob",
			blob: `window.__stashedPrefetch = {};`,
			want: Credentials{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := "<html><head><script>" + tt.blob + "</script></head></html>"
			got := ExtractCredentialsFromHTML(html)
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestExtractCredentialsFromHTML_UsesFirstMarkedNode(t *testing.T) {
	html := `<html><body>
	<script>window.__stashedPrefetch = {requestId: "first"};</script>
	<script>window.__stashedPrefetch = {requestId: "second"};</script>
	</body></html>`

	creds := ExtractCredentialsFromHTML(html)
	if creds.RequestID != "first" {
		t.Fatalf("expected request id from first marked node, got %q", creds.RequestID)
	}
}

func TestAccessPolicyFromURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "followed by another param", raw: "/view?accessPolicy=XYZ&other=1", want: "XYZ"},
		{name: "at end of string", raw: "/view?requestId=r&accessPolicy=XYZ", want: "XYZ"},
		{name: "encoded value is decoded", raw: "/view?accessPolicy=%7B%22a%22%3A1%7D&x=2", want: `{"a":1}`},
		{name: "invalid escape kept literally", raw: "/view?accessPolicy=50%zz&x=2", want: "50%zz"},
		{name: "valid escapes decoded around an invalid one", raw: "/v?accessPolicy=%7B%22a%22%3A%2250%25%7D%zz&x=1", want: `{"a":"50%}%zz`},
		{name: "truncated escape at end", raw: "/v?accessPolicy=%7Bx%2", want: "{x%2"},
		{name: "plus is not a space", raw: "/v?accessPolicy=a+b", want: "a+b"},
		{name: "encoded ampersand ends the value", raw: "/v?accessPolicy=a%26b=1", want: "a"},
		{name: "key absent", raw: "/view?requestId=r", want: ""},
		{name: "empty value", raw: "/view?accessPolicy=&x=1", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := accessPolicyFromURL(tt.raw); got != tt.want {
				t.Errorf("accessPolicyFromURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
