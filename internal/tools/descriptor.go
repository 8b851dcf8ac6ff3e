package tools

// OpenAIFunctionDescriptor is the OpenAI-style function-calling descriptor
// for one tool, per §4.H's "two translations of every tool".
type OpenAIFunctionDescriptor struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Parameters  any    `json:"parameters"`
	} `json:"function"`
}

// ToOpenAIFunction translates spec into the {type:"function", function:{...}}
// shape expected by an OpenAI-compatible chat completions request.
func (s Spec) ToOpenAIFunction() OpenAIFunctionDescriptor {
	var d OpenAIFunctionDescriptor
	d.Type = "function"
	d.Function.Name = s.Name
	d.Function.Description = s.Description
	d.Function.Parameters = s.Parameters
	return d
}

// MCPToolDescriptor is the MCP-style {name, description, inputSchema}
// descriptor for one tool.
type MCPToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// ToMCPTool translates spec into an MCP tool descriptor.
func (s Spec) ToMCPTool() MCPToolDescriptor {
	return MCPToolDescriptor{Name: s.Name, Description: s.Description, InputSchema: s.Parameters}
}
