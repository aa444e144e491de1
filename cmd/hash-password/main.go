// cmd/hash-password/main.go
// Prints the bcrypt hash to use as ADMIN_PASSWORD_HASH.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"route-feedback-api/utils"
)

func main() {
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatal("Failed to read password:", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		log.Fatal("Password must not be empty")
	}

	// Already a bcrypt hash (they start with $2), nothing to do
	if strings.HasPrefix(password, "$2") {
		log.Println("Input is already a bcrypt hash")
		fmt.Println(password)
		return
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}
	fmt.Println(hashed)
}
