// Package cli implements the operator command line: provisioning passwords,
// enrolling MFA, trying a login and generating master keys.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/cofrapauth/internal/common"
	"github.com/dmitrijs2005/cofrapauth/internal/filex"
	"github.com/dmitrijs2005/cofrapauth/internal/qrcode"
	"github.com/dmitrijs2005/cofrapauth/internal/server/keys"
	"github.com/dmitrijs2005/cofrapauth/internal/server/services"
)

var (
	ErrUsage    = errors.New("usage")
	ErrRejected = errors.New("authentication rejected")
)

// writeFile is a test seam for QR output.
var writeFile = filex.WriteSecretFile

const usageMessage = `usage: cli [-c config.json] [-d dsn] [-k keyfile] <command>

commands:
  provision <username> [-qr file.png]   generate a new password
  enroll <username> [-qr file.png]      enroll (or re-enroll) TOTP
  login <username>                      check password + OTP
  keygen                                print a new base64 master key`

type Provisioner interface {
	Provision(ctx context.Context, username string) (*services.ProvisionResult, error)
}

type Enroller interface {
	Enroll(ctx context.Context, username string) (*services.EnrollResult, error)
}

type AuthService interface {
	Authenticate(ctx context.Context, req services.AuthRequest) (services.AuthResult, error)
}

type App struct {
	provisioner Provisioner
	enroller    Enroller
	auth        AuthService
	qrSize      int
	reader      *bufio.Reader
	out         io.Writer
}

func NewApp(p Provisioner, e Enroller, a AuthService, qrSize int, in io.Reader, out io.Writer) *App {
	return &App{
		provisioner: p,
		enroller:    e,
		auth:        a,
		qrSize:      qrSize,
		reader:      bufio.NewReader(in),
		out:         out,
	}
}

// NeedsCore reports whether command talks to the store.
func NeedsCore(command []string) bool {
	return len(command) > 0 && command[0] != "keygen" && command[0] != "help"
}

// Run executes one command. Errors are meant to become exit code 1.
func (a *App) Run(ctx context.Context, command []string) error {
	if len(command) == 0 {
		a.usage()
		return ErrUsage
	}

	switch command[0] {
	case "provision":
		return a.provision(ctx, command[1:])
	case "enroll":
		return a.enroll(ctx, command[1:])
	case "login":
		return a.login(ctx, command[1:])
	case "keygen":
		fmt.Fprintln(a.out, keys.Generate())
		return nil
	case "help":
		a.usage()
		return nil
	default:
		a.usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, command[0])
	}
}

func (a *App) usage() {
	fmt.Fprintln(a.out, usageMessage)
}

// userAndQR parses "<username> [-qr file]" in either order.
func userAndQR(name string, args []string) (string, string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	qr := fs.String("qr", "", "write a QR code PNG to this file")

	var username string
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		username, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if username == "" && fs.NArg() > 0 {
		username = fs.Arg(0)
	}
	if username == "" {
		return "", "", fmt.Errorf("%w: %s <username>", ErrUsage, name)
	}
	return username, *qr, nil
}

func (a *App) writeQR(path, content string) error {
	png, err := qrcode.Generate(content, a.qrSize)
	if err != nil {
		return err
	}
	if err := writeFile(path, png, 0o600); err != nil {
		return fmt.Errorf("write qr: %w", err)
	}
	fmt.Fprintf(a.out, "QR code written to %s\n", path)
	return nil
}

func (a *App) provision(ctx context.Context, args []string) error {
	username, qr, err := userAndQR("provision", args)
	if err != nil {
		return err
	}

	res, err := a.provisioner.Provision(ctx, username)
	if err != nil {
		return describe(err)
	}

	fmt.Fprintf(a.out, "username: %s\npassword: %s\n", res.Username, res.Password)
	if qr != "" {
		return a.writeQR(qr, res.Password)
	}
	return nil
}

func (a *App) enroll(ctx context.Context, args []string) error {
	username, qr, err := userAndQR("enroll", args)
	if err != nil {
		return err
	}

	res, err := a.enroller.Enroll(ctx, username)
	if err != nil {
		return describe(err)
	}

	fmt.Fprintf(a.out, "username: %s\nprovisioning uri: %s\n", res.Username, res.ProvisioningURI)
	if qr != "" {
		return a.writeQR(qr, res.ProvisioningURI)
	}
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: login <username>", ErrUsage)
	}

	pw, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	otp, err := GetSimpleText(a.reader, "OTP", a.out)
	if err != nil {
		return err
	}

	result, err := a.auth.Authenticate(ctx, services.AuthRequest{Username: args[0], Password: string(pw), OTP: otp})
	if err != nil {
		return describe(err)
	}

	fmt.Fprintln(a.out, result.String())
	if result != services.Authenticated {
		return ErrRejected
	}
	return nil
}

func describe(err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return fmt.Errorf("%w: user not found", common.ErrorNotFound)
	case errors.Is(err, common.ErrorInvalidInput):
		return fmt.Errorf("%w: username is required", ErrUsage)
	case errors.Is(err, common.ErrorStore):
		return fmt.Errorf("credential store unavailable: %w", err)
	default:
		return err
	}
}
