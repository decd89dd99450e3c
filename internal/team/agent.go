package team

import (
	"github.com/cloudwego/eino/components/tool"
)

// Agent is one member of the research team: a name, a persona prompt, and
// at most one bound tool. Agents hold no conversation state — the
// coordinator passes the full transcript on every turn.
type Agent struct {
	// Name is the transcript speaker label for this agent.
	Name string

	// SystemPrompt establishes the agent's role for its completion call.
	SystemPrompt string

	// Tool is the single optional tool this agent may invoke once per turn.
	// Nil for agents that only reason over the transcript.
	Tool tool.BaseTool
}

// retrievalPrompt steers the corpus retrieval agent.
const retrievalPrompt = `You are the corpus retrieval specialist on a research team.
On your turn, identify what the team still needs to know about the research
question, call the search_research_corpus tool with a focused query, and
summarize what the retrieved passages establish. Always name the source
titles you are drawing from. If the corpus has nothing relevant, say so
plainly so the team can look elsewhere.`

// webPrompt steers the web search agent.
const webPrompt = `You are the web research specialist on a research team.
On your turn, look at what the corpus retrieval turn established and fill
the gaps with current information from the web using the search_web tool.
Prefer recent results and always carry the source URLs into your summary.`

// synthesisPrompt steers the synthesis agent. Its completion marker is the
// team's sentinel termination condition.
const synthesisPrompt = `You are the synthesis lead on a research team.
On your turn, combine the corpus evidence and web findings gathered so far
into a direct answer to the original research question. Cite the sources
behind each claim. If the evidence is sufficient to answer the question,
end your message with the phrase "` + DefaultSentinel + `" on its own line.
If it is not sufficient, state precisely what is missing instead.`

// NewRetrievalAgent constructs the corpus retrieval agent.
func NewRetrievalAgent(t tool.BaseTool) *Agent {
	return &Agent{Name: "RetrievalAgent", SystemPrompt: retrievalPrompt, Tool: t}
}

// NewWebAgent constructs the web search agent.
func NewWebAgent(t tool.BaseTool) *Agent {
	return &Agent{Name: "WebAgent", SystemPrompt: webPrompt, Tool: t}
}

// NewSynthesisAgent constructs the synthesis agent. It carries no tool.
func NewSynthesisAgent() *Agent {
	return &Agent{Name: "SynthesisAgent", SystemPrompt: synthesisPrompt}
}
