// autotag discovers the resources of delegated AWS accounts and tags them with
// an environment classification.
package main

func main() {
	Execute()
}
