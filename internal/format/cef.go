package format

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"secevents/internal/domain"
)

const (
	cefVendor  = "Code42"
	cefProduct = "secevents"
	cefVersion = "1"
)

// cefField maps one payload field onto a CEF extension key.
type cefField struct {
	key   string
	field string
}

type cefMapping struct {
	signatureField string
	defaultSig     string
	nameField      string
	defaultName    string
	severityField  string
	extensions     []cefField
}

var cefMappings = map[domain.Kind]cefMapping{
	domain.KindAlerts: {
		signatureField: "ruleId",
		defaultSig:     "alert",
		nameField:      "name",
		defaultName:    "Alert",
		severityField:  "severity",
		extensions: []cefField{
			{"externalId", "id"},
			{"suser", "actor"},
			{"msg", "description"},
			{"cs1", "ruleName"},
			{"cs2", "state"},
			{"cs3", "type"},
		},
	},
	domain.KindAuditLogs: {
		signatureField: "type$",
		defaultSig:     "audit-log",
		nameField:      "type$",
		defaultName:    "Audit log event",
		extensions: []cefField{
			{"suser", "actorName"},
			{"suid", "actorId"},
			{"src", "actorIpAddress"},
			{"duser", "affectedUserName"},
			{"duid", "affectedUserId"},
		},
	},
	domain.KindFileEvents: {
		signatureField: "eventType",
		defaultSig:     "file-event",
		nameField:      "eventType",
		defaultName:    "File event",
		extensions: []cefField{
			{"externalId", "eventId"},
			{"fname", "fileName"},
			{"filePath", "filePath"},
			{"fileHash", "md5Checksum"},
			{"fsize", "fileSize"},
			{"suser", "deviceUserName"},
			{"shost", "osHostName"},
			{"src", "publicIpAddress"},
			{"cs1", "exposure"},
		},
	},
}

var cefLabels = map[domain.Kind]map[string]string{
	domain.KindAlerts:     {"cs1": "ruleName", "cs2": "state", "cs3": "alertType"},
	domain.KindFileEvents: {"cs1": "exposure"},
}

var severityScores = map[string]int{
	"LOW":    3,
	"MEDIUM": 5,
	"HIGH":   8,
}

// CEFFormatter renders events as ArcSight Common Event Format lines.
type CEFFormatter struct {
	mappings map[domain.Kind]cefMapping
}

func NewCEFFormatter() *CEFFormatter {
	return &CEFFormatter{mappings: cefMappings}
}

func (f *CEFFormatter) Format(e domain.Event) (string, error) {
	m, ok := f.mappings[e.Kind]
	if !ok {
		return "", fmt.Errorf("no CEF mapping for kind %q", e.Kind)
	}

	sig := fieldString(e.Fields, m.signatureField)
	if sig == "" {
		sig = m.defaultSig
	}
	name := fieldString(e.Fields, m.nameField)
	if name == "" {
		name = m.defaultName
	}
	severity := 5
	if m.severityField != "" {
		if score, ok := severityScores[strings.ToUpper(fieldString(e.Fields, m.severityField))]; ok {
			severity = score
		}
	}

	var b strings.Builder
	b.WriteString("CEF:0")
	for _, h := range []string{cefVendor, cefProduct, cefVersion, sig, name, strconv.Itoa(severity)} {
		b.WriteByte('|')
		b.WriteString(escapeHeader(h))
	}
	b.WriteByte('|')

	// rt is milliseconds since the epoch.
	ext := []string{"rt=" + e.Timestamp.Decimal().Shift(3).Truncate(0).String()}
	labels := cefLabels[e.Kind]
	for _, x := range m.extensions {
		v := fieldString(e.Fields, x.field)
		if v == "" {
			continue
		}
		ext = append(ext, x.key+"="+escapeExtension(v))
		if label, ok := labels[x.key]; ok {
			ext = append(ext, x.key+"Label="+escapeExtension(label))
		}
	}
	b.WriteString(strings.Join(ext, " "))

	return b.String(), nil
}

func fieldString(fields map[string]any, key string) string {
	if key == "" {
		return ""
	}
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := domain.CanonicalJSON(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

var headerEscaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`, "\r", " ", "\n", " ")

func escapeHeader(s string) string {
	return headerEscaper.Replace(s)
}

var extensionEscaper = strings.NewReplacer(`\`, `\\`, `=`, `\=`, "\r\n", `\n`, "\n", `\n`, "\r", `\r`)

func escapeExtension(s string) string {
	return extensionEscaper.Replace(s)
}
