/*
Package ports defines the driven ports (interfaces) for the task engine.

These interfaces decouple the engine from its external collaborators, allowing
the same tree to run against production backends or in-memory test doubles.

# Key Interfaces

  - KVStore: get/set/exists semantics backing the Cacher and Terminable
    decorators (cache entries, termination signals).
  - ChatClient: the LLM backend invoked by the LLM leaf, with optional
    streaming.
  - TraceStore: persistence for finished (or in-flight) trace trees.
*/
package ports
