// Command gguf-inspect inspects converted GGUF model files
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/headlands-org/go-distilbert/internal/gguf"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <model.gguf>\n", os.Args[0])
		os.Exit(1)
	}

	path := os.Args[1]

	reader, err := gguf.Open(path)
	if err != nil {
		log.Fatalf("Failed to open GGUF file: %v", err)
	}
	defer reader.Close()

	header := reader.Header()
	fmt.Printf("GGUF File: %s\n", path)
	fmt.Printf("Version: %d\n", header.Version)
	fmt.Printf("Tensor Count: %d\n", header.TensorCount)
	fmt.Printf("Metadata KV Count: %d\n\n", header.MetadataKV)

	fmt.Println("=== Metadata ===")
	printMetadata(reader, "general.architecture")
	printMetadata(reader, "general.name")
	printMetadata(reader, "general.file_type")
	printMetadata(reader, "distilbert.context_length")
	printMetadata(reader, "distilbert.embedding_length")
	printMetadata(reader, "distilbert.block_count")
	printMetadata(reader, "distilbert.feed_forward_length")
	printMetadata(reader, "distilbert.vocab_size")
	printMetadata(reader, "distilbert.attention.head_count")
	printMetadata(reader, "distilbert.attention.layer_norm_epsilon")
	printMetadata(reader, "tokenizer.ggml.model")
	printMetadata(reader, "tokenizer.ggml.lowercase")
	printMetadata(reader, "tokenizer.ggml.tokens")
	printMetadata(reader, "tokenizer.ggml.token_type")
	fmt.Println()

	fmt.Println("=== Tensors ===")
	tensors := reader.ListTensors()
	fmt.Printf("Total: %d tensors\n\n", len(tensors))

	for _, name := range tensors {
		desc, _ := reader.GetTensor(name)
		fmt.Printf("%-40s  dtype=%-4s  dims=%v  size=%d bytes\n",
			name, desc.DType, desc.Dims, desc.Size)
	}
}

func printMetadata(r *gguf.Reader, key string) {
	val, ok := r.GetMetadata(key)
	if !ok {
		return
	}

	switch v := val.(type) {
	case []interface{}:
		fmt.Printf("%-42s: [%d items]\n", key, len(v))
	default:
		fmt.Printf("%-42s: %v\n", key, v)
	}
}
