// Package services implements the core application logic.
//
// Services implement the driving ports and depend only on domain types
// and driven ports. They contain the RAG pipeline: chunking, ingestion,
// retrieval, conversation memory, and answer synthesis.
package services
