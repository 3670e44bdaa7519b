// Package uri implements the agent:// URI scheme: a topology-independent
// identity format for agents in multi-agent systems.
//
// An agent URI binds an organizational trust root, a hierarchical capability
// path, and a time-sortable unique identifier into a single string:
//
//	agent://<trust-root>/<capability-path>/<agent-id>[?query][#fragment]
//
// For example:
//
//	agent://anthropic.com/assistant/chat/llm_chat_01h455vb4pex5vsknk084sn02q
//
// The package provides parsing, validation, normalization, a staged builder,
// and the structural model (TrustRoot, CapabilityPath, AgentID, Query,
// Fragment). All values are immutable after construction and safe to share
// across goroutines without synchronization. The package performs no I/O.
package uri
