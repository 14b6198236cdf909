package engine

// defaultQATemplate is consumed verbatim; {context_str} and {query_str} are
// the only substitution slots. Overridable via QA_TEMPLATE.
const defaultQATemplate = "You are an internal knowledge-base assistant. Context information from " +
	"company documents is below.\n" +
	"---------------------\n" +
	"{context_str}\n" +
	"---------------------\n" +
	"Given the context information and not prior knowledge, answer the " +
	"question: {query_str}\n" +
	"If the context does not contain the answer, say that the documents do " +
	"not cover it."
