package analysis

import "strings"

const textPlaceholder = "{text}"

const promptTemplate = `You are an expert in analyzing company websites to extract valuable information that will be used to create hyper-personalized emails for sales and marketing purposes. Your analysis will focus on key business aspects that can be leveraged to write effective emails, with the goal of improving deal closure rates and establishing strong business relationships.
Please extract and structure the relevant information from the following text, making sure to include specific details about the company's operations, products, market focus, and any key points that could be used for personalized outreach.

### Scraped Text:
{text}

---

### Please provide the extracted information in the following structured format:

1. Company Overview
2. Products/Services
3. Target Audience/Market
4. Key Business Initiatives
5. Company Leadership & Team
6. Industry Position
7. Technology & Innovation
8. Financial Information
9. Recent News & Press Releases
10. Challenges or Pain Points
11. Opportunities for Engagement
---

### The goal is to ensure the information is structured in a way that helps craft personalized outreach, addressing the company's unique challenges and goals, and showcasing how we can provide value in a relevant and meaningful way.
`

// BuildPrompt embeds text in the sales-research prompt.
func BuildPrompt(text string) string {
	return strings.Replace(promptTemplate, textPlaceholder, text, 1)
}
