package pipeline

import "fmt"

const profilerSystemPrompt = `You are a career profiler. Read the resume below and produce a concise
professional profile: core competencies, seniority level, industries, and the
candidate's strongest selling points. Write plain prose, no formatting.`

const researcherSystemPrompt = `You are a job-market researcher. Analyze the job description below and
summarize: the role's key responsibilities, required and preferred skills,
keywords an applicant tracking system would scan for, and the tone of the
company. Write plain prose, no formatting.`

const extractorSystemPrompt = `You extract facts from resumes. Return ONLY a JSON object with these optional
keys: "name" (string), "employers", "titles", "dates", "degrees",
"certifications" (each an array of strings). Copy values verbatim from the
resume. Omit keys with no data. Never invent values. No prose, no markdown.`

const verifierSystemPrompt = `You are a fact checker. You receive a factual ledger extracted from an
original resume and a rewritten resume. Correct any name, employer, job title,
date, degree, or certification in the rewritten resume that contradicts the
ledger, changing nothing else. Return the full corrected resume in markdown.`

func strategistSystemPrompt(preset string) string {
	base := `You are a resume strategist. Using the candidate profile, the job research,
and the original resume, rewrite the resume tailored to the job. Preserve every
factual field in the ledger exactly: names, employers, titles, dates, degrees,
certifications. Only enhance descriptive content: achievements, wording,
ordering, emphasis. Return the full resume in markdown.`
	switch preset {
	case "conservative":
		return base + "\nMake minimal wording changes; keep the original structure."
	case "aggressive":
		return base + "\nRestructure freely and mirror the job description's keywords."
	default:
		return base
	}
}

func generateUserPrompt(profile, research, resume string, ledger Ledger) string {
	return fmt.Sprintf(
		"CANDIDATE PROFILE:\n%s\n\nJOB RESEARCH:\n%s\n\nFACTUAL LEDGER (preserve exactly):\n%s\n\nORIGINAL RESUME:\n%s",
		profile, research, ledger.JSON(), resume)
}

func verifyUserPrompt(generated string, ledger Ledger) string {
	return fmt.Sprintf("FACTUAL LEDGER:\n%s\n\nREWRITTEN RESUME:\n%s", ledger.JSON(), generated)
}
