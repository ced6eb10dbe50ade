package conversation

import (
	"fmt"
	"strings"

	"github.com/theoyinbooke/saggiatore-sub001/pkg/catalog"
)

// AgentSystemPrompt builds the system prompt for the immigration agent
// under test, listing the tools it may call.
func AgentSystemPrompt(tools []catalog.Tool) string {
	var toolList strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&toolList, "- %s: %s\n", t.Name, t.Description)
	}

	return fmt.Sprintf(`You are an expert immigration legal assistant helping clients navigate US immigration law. You have access to specialized tools to look up information, check eligibility, and provide accurate guidance.

IMPORTANT GUIDELINES:
1. Always be empathetic and understanding of the client's situation
2. Use your tools to verify information before making claims
3. Never provide unauthorized practice of law; frame advice as general information
4. Be thorough and cover all relevant aspects of the client's question
5. If the situation is complex, recommend consulting with a licensed immigration attorney
6. Be factually accurate about immigration procedures, forms, deadlines, and requirements
7. Address safety concerns (domestic violence, persecution) with sensitivity and appropriate resources
8. Consider the full context of the client's immigration history when giving guidance

Available tools:
%s
Use tools proactively to look up current processing times, eligibility requirements, and form information. Do not guess when you can verify with a tool.`, toolList.String())
}

// PersonaSystemPrompt builds the character sheet prompt for the persona
// simulator from the persona's background and the scenario being played.
func PersonaSystemPrompt(persona catalog.Persona, scenario catalog.Scenario) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are roleplaying as %s, a %d-year-old %s national.\n", persona.Name, persona.Age, persona.Nationality)
	b.WriteString("\nYOUR BACKGROUND:\n")
	fmt.Fprintf(&b, "- Current status: %s\n", persona.CurrentStatus)
	fmt.Fprintf(&b, "- Visa type: %s\n", persona.VisaType)
	fmt.Fprintf(&b, "- Backstory: %s\n", persona.Backstory)
	if persona.FamilyInfo != "" {
		fmt.Fprintf(&b, "- Family: %s\n", persona.FamilyInfo)
	}
	if persona.EmploymentInfo != "" {
		fmt.Fprintf(&b, "- Employment: %s\n", persona.EmploymentInfo)
	}
	if persona.EducationInfo != "" {
		fmt.Fprintf(&b, "- Education: %s\n", persona.EducationInfo)
	}

	b.WriteString("\nYOUR GOALS:\n")
	for _, g := range persona.Goals {
		fmt.Fprintf(&b, "- %s\n", g)
	}

	b.WriteString("\nYOUR CHALLENGES:\n")
	for _, c := range persona.Challenges {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	fmt.Fprintf(&b, "\nSCENARIO: %s\n%s\n", scenario.Title, scenario.Description)

	b.WriteString("\nINSTRUCTIONS:\n")
	fmt.Fprintf(&b, "- Stay in character as %s throughout the conversation\n", persona.Name)
	b.WriteString("- Ask questions a real person in this situation would ask\n")
	b.WriteString("- Show appropriate emotions (anxiety about status, hope for resolution, confusion about process)\n")
	b.WriteString("- Respond to the agent's advice with follow-up questions that dig deeper\n")
	b.WriteString("- If the agent uses technical terms, ask for clarification like a real client would\n")
	b.WriteString("- Share relevant details from your background naturally as the conversation progresses\n")
	b.WriteString("- Keep responses concise (2-4 sentences typically)\n")
	b.WriteString("\nStart by introducing yourself and describing your current situation and what you need help with.")

	return b.String()
}

// toolSimulatorPrompt builds the system prompt that makes the simulator
// model behave like the named tool's backing API.
func toolSimulatorPrompt(name, description, returnType, returnDescription string) string {
	return fmt.Sprintf(`You are a simulated immigration tool API. You return realistic, plausible JSON responses for immigration-related tool calls.

Tool: %s
Description: %s
Expected return: %s (%s)

Return a realistic JSON response based on the arguments provided. Make the data plausible and detailed for an immigration context. Return ONLY valid JSON, no explanation.`,
		name, description, returnType, returnDescription)
}
