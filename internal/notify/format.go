package notify

import (
	"bytes"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/hamed0406/healthbatch/internal/domain"
)

const (
	titleFailure  = "🚨 Health Check Failure Alert"
	titleSlow     = "🐌 Slow Response Alert"
	titleDuration = "⚠️ Batch Execution Alert"
	titleRunError = "🚨 Batch Execution Error"
	titleTest     = "🧪 Test Message"
)

const timeLayout = "2006-01-02 15:04:05"

var alertTemplates = template.Must(template.New("alerts").Funcs(sprig.TxtFuncMap()).Parse(`
{{- define "failure" -}}
⏰ Time: {{ .Time | date "` + timeLayout + `" }}

{{ range .Results -}}
🔸 *{{ .Name | default .URL }}*
   URL: {{ .URL }}
   Method: {{ .Method }}
   Error: {{ .ErrorMessage | default "Unknown error" }}
   Response Time: {{ .ElapsedMS }}ms
   Status: ❌ Failed

{{ end -}}
{{- end -}}

{{- define "slow" -}}
⏰ Time: {{ .Time | date "` + timeLayout + `" }}
🎯 Threshold: {{ .ThresholdMS }}ms

{{ range .Results -}}
🔸 *{{ .Name | default .URL }}*
   URL: {{ .URL }}
   Method: {{ .Method }}
   Response Time: {{ .ElapsedMS }}ms
   Status: ✅ Success

{{ end -}}
{{- end -}}

{{- define "duration" -}}
Execution time: {{ .ElapsedMS }}ms
Threshold: {{ .ThresholdMS }}ms
Time: {{ .Time | date "` + timeLayout + `" }}
{{- end -}}

{{- define "run_error" -}}
Error: {{ .Error | default "Unknown error" }}
Time: {{ .Time | date "` + timeLayout + `" }}
{{- end -}}

{{- define "test" -}}
Health Check Batch is running successfully!

Time: {{ .Time | date "` + timeLayout + `" }}
{{- end -}}
`))

type alertData struct {
	Time        time.Time
	Results     []domain.ProbeResult
	ThresholdMS int64
	ElapsedMS   int64
	Error       string
}

func render(name string, d alertData) (string, error) {
	var buf bytes.Buffer
	if err := alertTemplates.ExecuteTemplate(&buf, name, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}
