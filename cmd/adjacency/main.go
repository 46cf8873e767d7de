// Command adjacency renders the statements a recursive relation executes.
//
// Usage:
//
//	adjacency plan --config relation.yaml --owner 1
//	adjacency plan --config relation.yaml --dialect mysql57 --owner 1 --owner 2
//	adjacency dialects
package main

func main() {
	Execute()
}
