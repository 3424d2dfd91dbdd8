package app

import (
	"fmt"

	"propvalue/internal/domain"
)

const analystSystemPrompt = `You are a UK commercial property analyst writing for agents and investors.
Answer as a numbered list of points. Start each point with its number and a short bold title on
the same line, for example "1. **Transport Links**", followed by one or two sentences on the next
line. Finish with a line that starts "In summary:" and gives a one-sentence conclusion.`

func benefitsPrompt(q domain.ReportQuery, postcode string) string {
	return fmt.Sprintf(
		"List the main location benefits for a %s property of %s at postcode %s. "+
			"Cover transport, amenities, local economy and occupier demand.",
		q.PropertyType, describeArea(q.Area), postcode)
}

func psychographicsPrompt(q domain.ReportQuery, postcode string) string {
	return fmt.Sprintf(
		"Describe the psychographic profile of the people who live and work around postcode %s "+
			"and what it means for a %s occupier: lifestyle, values, spending habits and footfall.",
		postcode, q.PropertyType)
}

func describeArea(a domain.Area) string {
	switch {
	case a.Value != nil:
		return fmt.Sprintf("%.0f sq ft", *a.Value)
	case a.Minimum != nil && a.Maximum != nil:
		return fmt.Sprintf("%.0f to %.0f sq ft", *a.Minimum, *a.Maximum)
	case a.Minimum != nil:
		return fmt.Sprintf("at least %.0f sq ft", *a.Minimum)
	case a.Maximum != nil:
		return fmt.Sprintf("up to %.0f sq ft", *a.Maximum)
	}
	return "unspecified size"
}
