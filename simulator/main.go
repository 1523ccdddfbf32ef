package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"resume-tailor/pkg/job"
)

var sampleResumes = []string{
	`Jordan Rivera
Senior Software Engineer at Acme Corp (2019-2024)
- Led migration of billing platform to event-driven architecture
- Mentored four junior engineers
Software Engineer at Initech (2016-2019)
B.S. Computer Science, State University, 2016
Certifications: AWS Solutions Architect Associate`,
	`Sam Okafor
Data Analyst, Globex Inc (2021-present)
- Built dashboards tracking churn across 3 product lines
- Automated weekly reporting with Python
Junior Analyst, Hooli (2019-2021)
M.S. Statistics, Tech Institute, 2019`,
}

var sampleDescriptions = []string{
	`We are hiring a Backend Engineer to own our job processing platform.
Requirements: Go or Java, PostgreSQL, message queues, 5+ years experience.`,
	`Seeking a Data Analyst comfortable with SQL, Python, and stakeholder
communication. Experience with churn analysis a strong plus.`,
}

func main() {
	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://api:8080/resume/customize"
	}

	ratePerSec := 1
	if v := os.Getenv("RATE_PER_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ratePerSec = n
		}
	}

	concurrency := 1
	if v := os.Getenv("CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			concurrency = n
		}
	}

	for i := 0; i < concurrency; i++ {
		go submitLoop(apiURL, ratePerSec/concurrency)
	}

	select {} // block forever
}

func submitLoop(apiURL string, rps int) {
	interval := time.Second
	if rps > 0 {
		interval = time.Second / time.Duration(rps)
	}
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	for {
		<-ticker.C
		req := job.SubmissionRequest{
			OwnerID:            fmt.Sprintf("user%d", rand.Intn(1000)),
			ResumeContent:      sampleResumes[rand.Intn(len(sampleResumes))],
			ResumeFormat:       "text",
			JobDescription:     sampleDescriptions[rand.Intn(len(sampleDescriptions))],
			OutputFormat:       randomOutputFormat(),
			OptimizationPreset: randomPreset(),
		}
		body, _ := json.Marshal(req)
		resp, err := http.Post(apiURL, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("failed to submit job: %v", err)
			continue
		}
		log.Printf("submitted job: owner=%s format=%s, status: %d",
			req.OwnerID, req.OutputFormat, resp.StatusCode)
		resp.Body.Close()
	}
}

func randomOutputFormat() string {
	switch rand.Intn(4) {
	case 0:
		return "text"
	case 1:
		return "markdown"
	case 2:
		return "html"
	default:
		return "pdf"
	}
}

func randomPreset() string {
	switch rand.Intn(3) {
	case 0:
		return "conservative"
	case 1:
		return "aggressive"
	default:
		return "balanced"
	}
}
