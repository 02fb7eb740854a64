package graphcheck

// Node kinds understood by the workflow runtime. Unknown kinds are reported
// as warnings so newer graphs still validate.
const (
	NodeStart           = "start"
	NodeSendText        = "send_text"
	NodeSendTemplate    = "send_template"
	NodeSetVariable     = "set_variable"
	NodeSendInteractive = "send_interactive"
	NodeWaitForResponse = "wait_for_response"
	NodeDecide          = "decide"
	NodeCall            = "call"
	NodeWebhook         = "webhook"
	NodePipedream       = "pipedream"
	NodeFunction        = "function"
	NodeAgent           = "agent"
	NodeHandoff         = "handoff"
)

// NodeTypes is the supported node_type vocabulary.
var NodeTypes = map[string]bool{
	NodeStart:           true,
	NodeSendText:        true,
	NodeSendTemplate:    true,
	NodeSetVariable:     true,
	NodeSendInteractive: true,
	NodeWaitForResponse: true,
	NodeDecide:          true,
	NodeCall:            true,
	NodeWebhook:         true,
	NodePipedream:       true,
	NodeFunction:        true,
	NodeAgent:           true,
	NodeHandoff:         true,
}

// StartNodeID is the id the entry node must carry.
const StartNodeID = "start"

// NextLabel is the only label allowed on the out-edge of a non-branching node.
const NextLabel = "next"
