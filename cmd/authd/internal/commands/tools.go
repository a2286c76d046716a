package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/password"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

type HashPasswordCmd struct {
	Password string `arg:"" optional:"" help:"Password to hash. Read from stdin when omitted."`
}

func (c *HashPasswordCmd) Run() error {
	return c.run(os.Stdin, os.Stdout)
}

func (c *HashPasswordCmd) run(in io.Reader, out io.Writer) error {
	plain := c.Password
	if plain == "" {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		plain = strings.TrimRight(line, "\r\n")
	}

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(plain)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

type GenTOTPCmd struct {
	Account string `arg:"" optional:"" help:"Account name shown in the authenticator app."`
	Issuer  string `help:"Issuer shown in the authenticator app." default:"authcore"`
	Secret  string `help:"Print the current code for this secret instead of generating one."`
}

func (c *GenTOTPCmd) Run(_ context.Context) error {
	return c.run(os.Stdout, time.Now())
}

func (c *GenTOTPCmd) run(out io.Writer, now time.Time) error {
	if c.Secret != "" {
		code, err := totp.GenerateCodeCustom(c.Secret, now, totp.ValidateOpts{
			Period:    30,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		_, err = fmt.Fprintln(out, code)
		return err
	}

	if c.Account == "" {
		return errors.New("account is required when generating a secret")
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      c.Issuer,
		AccountName: c.Account,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return fmt.Errorf("generate secret: %w", err)
	}
	_, err = fmt.Fprintf(out, "secret: %s\nurl:    %s\n", key.Secret(), key.URL())
	return err
}
