// Command labtasker runs the task dispatch server. Its exit-code contract:
// 0 clean shutdown, 1 configuration error, 2 store connectivity failure
// at startup.
package main

func main() {
	run()
}
