// Command clockmon is the host companion of the clock meter firmware.
package main

func main() {
	Execute()
}
