package spectrum

import (
	"errors"
	"strings"
	"testing"

	"github.com/beevik/etree"
)

func TestBuildEnvelopeShape(t *testing.T) {
	body := buildEnvelope(OpGetJob, map[string]string{
		"Company_Code":     "FTL",
		"Division":         "100",
		"Status_Code":      "A",
		"Authorization_ID": "secret",
		"GUID":             "abc-123",
		"Zz_Custom":        "x",
	})

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		t.Fatalf("envelope is not xml: %v", err)
	}

	root := doc.Root()
	if root.Tag != "Envelope" || root.Space != "soap" {
		t.Fatalf("unexpected root %s:%s", root.Space, root.Tag)
	}

	op := doc.FindElement("//" + OpGetJob)
	if op == nil {
		t.Fatal("operation element missing")
	}
	if ns := op.SelectAttrValue("xmlns", ""); ns != tempuriNS {
		t.Errorf("operation namespace = %q, want %q", ns, tempuriNS)
	}

	// Parameter order must follow the vendor schema order, extras last.
	var order []string
	for _, child := range op.ChildElements() {
		order = append(order, child.Tag)
	}
	want := []string{"Company_Code", "Division", "Status_Code", "Authorization_ID", "GUID", "Zz_Custom"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("parameter order = %v, want %v", order, want)
	}
}

func TestParseEnvelopeUnwrapsResult(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
	<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
	  <soap:Body>
	    <GetJobResponse xmlns="http://tempuri.org/">
	      <GetJobResult>
	        <NewDataSet>
	          <response><Job_Number>21-100</Job_Number></response>
	        </NewDataSet>
	      </GetJobResult>
	    </GetJobResponse>
	  </soap:Body>
	</soap:Envelope>`)

	payload, err := parseEnvelope(OpGetJob, raw)
	if err != nil {
		t.Fatalf("parseEnvelope failed: %v", err)
	}
	if payload.Tag != OpGetJob+"Result" {
		t.Fatalf("expected the result element, got %q", payload.Tag)
	}

	rows, _ := Normalize(payload, testLogger())
	if len(rows) != 1 || rows[0]["Job_Number"] != "21-100" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestParseEnvelopeFault(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
	<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
	  <soap:Body>
	    <soap:Fault>
	      <faultcode>soap:Server</faultcode>
	      <faultstring>Invalid Authorization_ID</faultstring>
	    </soap:Fault>
	  </soap:Body>
	</soap:Envelope>`)

	_, err := parseEnvelope(OpGetJob, raw)
	var fault *VendorFault
	if !errors.As(err, &fault) {
		t.Fatalf("expected a VendorFault, got %v", err)
	}
	if fault.Code != "soap:Server" || fault.Message != "Invalid Authorization_ID" {
		t.Errorf("fault fields not extracted: %+v", fault)
	}
}

func TestParseEnvelopeBadShapes(t *testing.T) {
	for name, raw := range map[string]string{
		"not xml": "ERROR: gateway timeout",
		"html":    "<html><body>maintenance</body></html>",
		"no body": `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"></soap:Envelope>`,
	} {
		_, err := parseEnvelope(OpGetJob, []byte(raw))
		var shapeErr *ShapeError
		if !errors.As(err, &shapeErr) {
			t.Errorf("%s: expected a ShapeError, got %v", name, err)
		}
	}
}
