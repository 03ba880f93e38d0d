// Command vocab-inspect prints statistics for a WordPiece vocab.txt and
// looks up individual token IDs.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: vocab-inspect <vocab.txt> [token_ids...]")
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to open vocabulary: %v", err)
	}
	defer f.Close()

	var vocab []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		vocab = append(vocab, strings.TrimRight(scanner.Text(), "\r\n"))
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed to read vocabulary: %v", err)
	}

	var special, continuation int
	for _, t := range vocab {
		switch {
		case strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]"):
			special++
		case strings.HasPrefix(t, "##"):
			continuation++
		}
	}

	fmt.Printf("Total vocabulary size: %d\n", len(vocab))
	fmt.Printf("Special tokens:        %d\n", special)
	fmt.Printf("Continuation pieces:   %d\n", continuation)
	fmt.Printf("Word-initial pieces:   %d\n\n", len(vocab)-special-continuation)

	for _, name := range []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]"} {
		for i, t := range vocab {
			if t == name {
				fmt.Printf("%-7s id=%d\n", name, i)
				break
			}
		}
	}

	if len(os.Args) > 2 {
		fmt.Println("\nRequested token details:")
		fmt.Println(strings.Repeat("-", 40))
		for _, arg := range os.Args[2:] {
			id, err := strconv.Atoi(arg)
			if err != nil {
				log.Printf("Invalid token ID %q: %v", arg, err)
				continue
			}

			if id < 0 || id >= len(vocab) {
				log.Printf("Token ID %d out of range [0, %d)", id, len(vocab))
				continue
			}

			fmt.Printf("%6d: %q\n", id, vocab[id])
		}
	}
}
