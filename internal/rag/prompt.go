package rag

// systemInstructions frames every prompt. The model is told to stay
// inside the supplied context and to admit when it cannot answer,
// rather than improvise.
const systemInstructions = `You are a precise technical documentation assistant.
Answer the question using only the information in the context below.
If the context does not contain the answer, say that you don't know based on the available documents.
Keep answers concise and factual.`

const (
	contextHeader      = "Context:"
	emptyContextNotice = "No relevant documents were found.\n"
	historyHeader      = "Conversation so far:"
	questionPrefix     = "Question: "
	answerCue          = "Answer:"
)
