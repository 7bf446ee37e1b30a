package spectrum

import (
	"fmt"
	"sort"

	"github.com/beevik/etree"
)

const (
	soapEnvNS  = "http://schemas.xmlsoap.org/soap/envelope/"
	tempuriNS  = "http://tempuri.org/"
	soapAction = tempuriNS // SOAPAction header prefix for .asmx operations
)

// preferredParamOrder keeps envelope parameter order stable; the vendor's .asmx
// endpoints reject envelopes whose elements arrive out of schema order.
var preferredParamOrder = []string{
	"Company_Code",
	"Division",
	"Status_Code",
	"Customer_Code",
	"Cost_Center",
	"Cost_Type",
	"Job_Number",
	"Authorization_ID",
	"GUID",
}

// buildEnvelope renders a SOAP 1.1 request envelope for the named operation.
func buildEnvelope(operation string, params map[string]string) []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", soapEnvNS)
	env.CreateAttr("xmlns:xsd", "http://www.w3.org/2001/XMLSchema")
	env.CreateAttr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")

	body := env.CreateElement("soap:Body")
	op := body.CreateElement(operation)
	op.CreateAttr("xmlns", tempuriNS)

	seen := make(map[string]bool, len(params))
	appendParam := func(name string) {
		if value, ok := params[name]; ok && !seen[name] {
			op.CreateElement(name).SetText(value)
			seen[name] = true
		}
	}
	for _, name := range preferredParamOrder {
		appendParam(name)
	}
	// Remaining params in sorted order for determinism
	for _, name := range sortedKeys(params) {
		appendParam(name)
	}

	out, _ := doc.WriteToBytes()
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseEnvelope extracts the operation result payload from a SOAP 1.1 response
// body. A soap Fault becomes a *VendorFault; anything that is not an envelope
// becomes a *ShapeError.
func parseEnvelope(operation string, raw []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, &ShapeError{Operation: operation, Err: err}
	}

	// etree splits "soap:Body" into Space/Tag, so Tag comparisons below are
	// already namespace-free.
	root := doc.Root()
	if root == nil || root.Tag != "Envelope" {
		return nil, &ShapeError{Operation: operation, Err: fmt.Errorf("no soap envelope")}
	}

	body := findChild(root, "Body")
	if body == nil {
		return nil, &ShapeError{Operation: operation, Err: fmt.Errorf("no soap body")}
	}

	for _, child := range body.ChildElements() {
		if child.Tag == "Fault" {
			fault := &VendorFault{Operation: operation}
			if code := findChild(child, "faultcode"); code != nil {
				fault.Code = code.Text()
			}
			if msg := findChild(child, "faultstring"); msg != nil {
				fault.Message = msg.Text()
			}
			return nil, fault
		}
	}

	// The payload is {Operation}Response/{Operation}Result; tolerate responses
	// that skip either wrapper.
	payload := body
	if resp := findChild(body, operation+"Response"); resp != nil {
		payload = resp
	}
	if result := findChild(payload, operation+"Result"); result != nil {
		return result, nil
	}
	if children := payload.ChildElements(); len(children) == 1 {
		return children[0], nil
	}
	return payload, nil
}

func findChild(el *etree.Element, name string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == name {
			return child
		}
	}
	return nil
}
