// Package embeddings turns chunk text into vectors.
//
// PlanBatches splits chunks into request-sized batches. Orchestrator sends
// every batch at once and reassembles the vectors in chunk order. Providers
// wrap the hosted Cohere embed endpoint, OpenAI-compatible endpoints through
// langchaingo, and local ONNX models through fastembed.
package embeddings
