package pipeline

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-tailor/pkg/ai"
	"resume-tailor/pkg/document"
	"resume-tailor/pkg/errs"
	"resume-tailor/pkg/job"
)

// scriptedChat answers per service; unscripted services echo a canned reply.
type scriptedChat struct {
	replies map[string]string
	errors  map[string]error
	calls   []string
}

func (c *scriptedChat) Execute(_ context.Context, service string, _ ai.Request) (string, error) {
	c.calls = append(c.calls, service)
	if err, ok := c.errors[service]; ok {
		return "", err
	}
	if reply, ok := c.replies[service]; ok {
		return reply, nil
	}
	return service + " output", nil
}

type fakeFetcher struct {
	text string
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.text, f.err
}

type fakeFormatter struct {
	out  []byte
	mime string
	err  error
}

func (f *fakeFormatter) Format(_ context.Context, _ string, _ document.Format) ([]byte, string, error) {
	return f.out, f.mime, f.err
}

const validLedgerJSON = `{"name":"Jane Doe","employers":["Acme"],"titles":["Engineer"]}`

func testOrchestrator(t *testing.T, chat ChatClient, fetcher Fetcher, formatter OutputFormatter) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(chat, fetcher, formatter,
		Models{Profiler: "m1", Researcher: "m2", Strategist: "m3", Extractor: "m4"},
		slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	require.NoError(t, err)
	return o
}

func textJob() *job.Job {
	return &job.Job{
		ID:             "job-1",
		ResumeContent:  "Jane Doe\nEngineer at Acme 2019-2024",
		ResumeFormat:   "text",
		JobDescription: "We need a Go engineer.",
		OutputFormat:   "text",
	}
}

func TestRunHappyPath(t *testing.T) {
	chat := &scriptedChat{replies: map[string]string{
		ServiceExtractor:  validLedgerJSON,
		ServiceStrategist: "# Tailored Resume",
		ServiceVerifier:   "# Verified Resume",
	}}
	o := testOrchestrator(t, chat, &fakeFetcher{}, &fakeFormatter{})

	res, err := o.Run(context.Background(), textJob())
	require.NoError(t, err)
	assert.Equal(t, "# Verified Resume", res.Text)
	assert.Equal(t, document.MIMEText, res.MIMEType)
	assert.Equal(t, []string{
		ServiceProfiler, ServiceResearcher, ServiceExtractor,
		ServiceStrategist, ServiceVerifier,
	}, chat.calls, "stages run strictly in order")
}

func TestFactExtractionFailureSkipsVerification(t *testing.T) {
	chat := &scriptedChat{
		replies: map[string]string{ServiceStrategist: "# Unverified Resume"},
		errors:  map[string]error{ServiceExtractor: errs.UpstreamServer(500, "boom")},
	}
	o := testOrchestrator(t, chat, &fakeFetcher{}, &fakeFormatter{})

	res, err := o.Run(context.Background(), textJob())
	require.NoError(t, err, "fact extraction never aborts the job")
	assert.Equal(t, "# Unverified Resume", res.Text)
	assert.NotContains(t, chat.calls, ServiceVerifier, "empty ledger disables verification")
}

func TestInvalidLedgerDegrades(t *testing.T) {
	chat := &scriptedChat{replies: map[string]string{
		ServiceExtractor:  `{"name": 42}`, // violates schema
		ServiceStrategist: "# Resume",
	}}
	o := testOrchestrator(t, chat, &fakeFetcher{}, &fakeFormatter{})

	res, err := o.Run(context.Background(), textJob())
	require.NoError(t, err)
	assert.Equal(t, "# Resume", res.Text)
	assert.NotContains(t, chat.calls, ServiceVerifier)
}

func TestFencedLedgerAccepted(t *testing.T) {
	chat := &scriptedChat{replies: map[string]string{
		ServiceExtractor: "```json\n" + validLedgerJSON + "\n```",
	}}
	o := testOrchestrator(t, chat, &fakeFetcher{}, &fakeFormatter{})

	_, err := o.Run(context.Background(), textJob())
	require.NoError(t, err)
	assert.Contains(t, chat.calls, ServiceVerifier, "fenced ledger still enables verification")
}

func TestVerificationFailureKeepsGenerated(t *testing.T) {
	chat := &scriptedChat{
		replies: map[string]string{
			ServiceExtractor:  validLedgerJSON,
			ServiceStrategist: "# Generated Resume",
		},
		errors: map[string]error{ServiceVerifier: errs.Timeout("deadline", nil)},
	}
	o := testOrchestrator(t, chat, &fakeFetcher{}, &fakeFormatter{})

	res, err := o.Run(context.Background(), textJob())
	require.NoError(t, err)
	assert.Equal(t, "# Generated Resume", res.Text)
}

func TestProfileFailureIsFatal(t *testing.T) {
	chat := &scriptedChat{errors: map[string]error{ServiceProfiler: errs.UpstreamServer(502, "bad gateway")}}
	o := testOrchestrator(t, chat, &fakeFetcher{}, &fakeFormatter{})

	_, err := o.Run(context.Background(), textJob())
	require.Error(t, err)
	assert.Equal(t, errs.KindUpstreamServer, errs.KindOf(err))
	assert.Equal(t, []string{ServiceProfiler}, chat.calls, "pipeline stops at the failed stage")
}

func TestParseFailureIsFatal(t *testing.T) {
	chat := &scriptedChat{}
	o := testOrchestrator(t, chat, &fakeFetcher{}, &fakeFormatter{})

	j := textJob()
	j.ResumeFormat = "docx"
	_, err := o.Run(context.Background(), j)
	require.Error(t, err)
	assert.Equal(t, errs.KindUnsupportedFormat, errs.KindOf(err))
	assert.Empty(t, chat.calls, "no AI calls after a parse failure")
}

func TestJobDescriptionURLResolved(t *testing.T) {
	chat := &scriptedChat{replies: map[string]string{ServiceStrategist: "# Resume"}}
	fetcher := &fakeFetcher{text: "Scraped posting: Go engineer wanted."}
	o := testOrchestrator(t, chat, fetcher, &fakeFormatter{})

	j := textJob()
	j.JobDescription = "https://jobs.example.com/123"
	j.IsJobDescriptionURL = true

	_, err := o.Run(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://jobs.example.com/123"}, fetcher.urls)
}

func TestFetchFailureIsFatal(t *testing.T) {
	chat := &scriptedChat{}
	fetcher := &fakeFetcher{err: errs.NoContent("empty page")}
	o := testOrchestrator(t, chat, fetcher, &fakeFormatter{})

	j := textJob()
	j.JobDescription = "https://jobs.example.com/123"
	j.IsJobDescriptionURL = true

	_, err := o.Run(context.Background(), j)
	require.Error(t, err)
	assert.Equal(t, errs.KindNoContent, errs.KindOf(err))
}

func TestFormatFailureFallsBackToPlainText(t *testing.T) {
	chat := &scriptedChat{replies: map[string]string{ServiceStrategist: "# Resume"}}
	formatter := &fakeFormatter{err: errs.Network("chrome crashed", nil)}
	o := testOrchestrator(t, chat, &fakeFetcher{}, formatter)

	j := textJob()
	j.OutputFormat = "pdf"
	res, err := o.Run(context.Background(), j)
	require.NoError(t, err, "formatting never fails the job")
	assert.Equal(t, document.MIMEText, res.MIMEType)
	assert.Nil(t, res.Formatted)
}

func TestFormatSuccess(t *testing.T) {
	chat := &scriptedChat{replies: map[string]string{ServiceStrategist: "# Resume"}}
	formatter := &fakeFormatter{out: []byte("%PDF-1.4"), mime: document.MIMEPDF}
	o := testOrchestrator(t, chat, &fakeFetcher{}, formatter)

	j := textJob()
	j.OutputFormat = "pdf"
	res, err := o.Run(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, document.MIMEPDF, res.MIMEType)
	assert.Equal(t, []byte("%PDF-1.4"), res.Formatted)
	assert.Equal(t, "# Resume", res.Text, "plain text kept alongside the rendered blob")
}
