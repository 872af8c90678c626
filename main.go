package main

import "github.com/ataxihosur-pookie/Milk-delivery-sub000/cmd"

func main() {
	cmd.Execute()
}
