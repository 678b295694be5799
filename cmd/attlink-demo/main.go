// Command attlink-demo establishes an attested channel in between two
// simulated enclaves and exchanges one protected message over it.
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"path"

	"code.attlink.org/golang/internal/algos"
	"code.attlink.org/golang/internal/enclave"
	"code.attlink.org/golang/internal/observability"
	"code.attlink.org/golang/internal/protocols"
	"code.attlink.org/golang/internal/transport"
	"code.attlink.org/golang/pkg/dhsession"
	"code.attlink.org/golang/pkg/trust"
	"code.attlink.org/golang/pkg/trust/boltdb"
)

const usageFmt = `
Command Usage: %s [Flags]
  Run an attested channel establishment in between two simulated enclaves.

Flags:
------
`

type Cmd struct {
	Curve   string
	Message string
	Debug   bool
	TrustDB string
}

func parseFlags(progname string, args []string) *Cmd {
	cmd := Cmd{}

	flags := flag.NewFlagSet(progname, flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, usageFmt, path.Base(progname))
		flags.PrintDefaults()
	}

	const curveDoc = "ECDH elliptic curve Diffie-Helmann function name."
	flags.Func("dh", fmt.Sprintf("%s One of %+v.", curveDoc, algos.ListCurves()), func(v string) error {
		_, err := algos.GetCurve(v)
		if nil == err {
			cmd.Curve = v
		}
		return err
	})

	flags.StringVar(&cmd.Message, "m", "hello over the attested channel", "message sent over the established channel")
	flags.BoolVar(&cmd.Debug, "debug", false, "run the client enclave in debug mode")
	flags.StringVar(&cmd.TrustDB, "trustdb", "", "path of a boltdb trust store, in memory records when empty")

	flags.Parse(args)

	if "" == cmd.Curve {
		cmd.Curve = algos.CURVE_P256
	}

	return &cmd
}

func main() {
	cmd := parseFlags(os.Args[0], os.Args[1:])

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := observability.SetObservability(context.Background(), &observability.Observability{Logger: logger})

	err := run(ctx, cmd)
	if nil != err {
		log.Fatalf("demo failed, got error %v", err)
	}
}

func run(ctx context.Context, cmd *Cmd) error {
	log := observability.GetObservability(ctx).Log()

	curve, err := algos.GetCurve(cmd.Curve)
	if nil != err {
		return err
	}

	// both enclaves run on one simulated platform, the trust model the
	// handshake attestation relies on
	platform, err := enclave.NewPlatform(rand.Reader)
	if nil != err {
		return err
	}
	client, err := platform.NewEnclave(enclave.Params{Name: "attlink-client", IsvProdId: 1, IsvSvn: 2, Debug: cmd.Debug})
	if nil != err {
		return err
	}
	server, err := platform.NewEnclave(enclave.Params{Name: "attlink-server", IsvProdId: 2, IsvSvn: 5})
	if nil != err {
		return err
	}

	store, err := newTrustStore(ctx, cmd, client, server)
	if nil != err {
		return err
	}
	policy := trust.Policy{Store: store}

	// run the handshake over an in process connection
	init, err := dhsession.Init(dhsession.RoleInitiator, dhsession.Config{Curve: curve, Reporter: client})
	if nil != err {
		return err
	}
	resp, err := dhsession.Init(dhsession.RoleResponder, dhsession.Config{Curve: curve, Reporter: server})
	if nil != err {
		return err
	}

	cc, sc := net.Pipe()
	defer cc.Close()
	defer sc.Close()

	type outcome struct {
		res protocols.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := protocols.RunResponder(resp, transport.RWTransport{R: sc, W: sc}, []byte("attlink-demo"))
		done <- outcome{res: res, err: err}
	}()
	cres, err := protocols.RunInitiator(init, transport.RWTransport{R: cc, W: cc})
	if nil != err {
		return err
	}
	sout := <-done
	if nil != sout.err {
		return sout.err
	}
	log.Info("handshake completed",
		"curve", curve.Name(),
		"keyFingerprint", keyFingerprint(cres.Key),
		"prop", string(cres.Prop),
	)

	// both parties rule on the peer identity the handshake verified
	rec, err := policy.Evaluate(ctx, cres.Peer)
	if nil != err {
		return err
	}
	log.Info("client admitted server", "record", rec.Name)
	rec, err = policy.Evaluate(ctx, sout.res.Peer)
	if nil != err {
		return err
	}
	log.Info("server admitted client", "record", rec.Name)

	// exchange one protected message over the established channel
	cpair, err := cres.CipherPair(dhsession.RoleInitiator)
	if nil != err {
		return err
	}
	spair, err := sout.res.CipherPair(dhsession.RoleResponder)
	if nil != err {
		return err
	}
	cres.Key.Wipe()
	sout.res.Key.Wipe()

	csrz := transport.SafeSerializer{Serializer: transport.CBORSerializer{}, CipherPair: cpair}
	ssrz := transport.SafeSerializer{Serializer: transport.CBORSerializer{}, CipherPair: spair}

	sealed, err := csrz.Marshal(cmd.Message)
	if nil != err {
		return err
	}
	var opened string
	err = ssrz.Unmarshal(sealed, &opened)
	if nil != err {
		return err
	}

	fmt.Printf("channel message (%d sealed bytes): %s\n", len(sealed), opened)

	return nil
}

// newTrustStore seeds a trust store admitting the two demo enclaves by
// signer. The client record tracks the -debug flag so that the evaluation
// outcome shows the policy at work.
func newTrustStore(ctx context.Context, cmd *Cmd, client, server *enclave.Enclave) (trust.Store, error) {
	var store trust.Store
	var err error
	if "" != cmd.TrustDB {
		store, err = boltdb.New(cmd.TrustDB)
		if nil != err {
			return nil, err
		}
	} else {
		store = trust.NewMemStore()
	}

	cid, sid := client.Identity(), server.Identity()
	records := []trust.IdentityRecord{
		{
			Name:       "attlink-client",
			MrSigner:   cid.MrSigner[:],
			IsvProdId:  cid.IsvProdId,
			MinIsvSvn:  1,
			AllowDebug: cmd.Debug,
		},
		{
			Name:      "attlink-server",
			MrSigner:  sid.MrSigner[:],
			IsvProdId: sid.IsvProdId,
			MinIsvSvn: 1,
		},
	}
	for _, rec := range records {
		err = store.SaveRecord(ctx, rec)
		if nil != err {
			return nil, err
		}
	}

	return store, nil
}

// keyFingerprint returns a printable digest of key. The key itself never
// reaches the logs.
func keyFingerprint(key dhsession.SessionKey) string {
	digest := sha256.Sum256(key[:])
	return hex.EncodeToString(digest[:8])
}
