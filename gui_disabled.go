//go:build !gui

package main

func initGUI() {
	panic("sonodict: built without GUI support (rebuild with -tags gui)")
}
