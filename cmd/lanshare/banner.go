package main

import (
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/gookit/color"
	"github.com/mdp/qrterminal/v3"

	"lanshare/internal/config"
	"lanshare/internal/discovery"
)

// lanURL is the address phones and laptops on the same network should open.
func lanURL(cfg config.Config, ad *discovery.Advertisement) string {
	port := strconv.Itoa(cfg.Port)
	if ad != nil {
		if ips := ad.Record().IPs; len(ips) > 0 {
			return "http://" + net.JoinHostPort(ips[0], port) + "/"
		}
	}
	if ip := net.ParseIP(cfg.Host); ip != nil && !ip.IsUnspecified() {
		return "http://" + net.JoinHostPort(ip.String(), port) + "/"
	}
	if ip, err := (discovery.GatewayResolver{}).LocalIPv4(); err == nil {
		return "http://" + net.JoinHostPort(ip.String(), port) + "/"
	}
	return "http://" + net.JoinHostPort("localhost", port) + "/"
}

func printBanner(w io.Writer, cfg config.Config, ad *discovery.Advertisement, url string) {
	title := color.New(color.FgGreen, color.OpBold)
	dim := color.New(color.FgGray)

	fmt.Fprintln(w, title.Render("lanshare is running"))
	fmt.Fprintf(w, "  %s %s\n", dim.Render("storage:"), cfg.StorageRoot)
	fmt.Fprintf(w, "  %s %s\n", dim.Render("open:   "), color.Cyan.Render(url))
	if ad != nil {
		fmt.Fprintf(w, "  %s %s\n", dim.Render("mdns:   "), color.Cyan.Render(ad.URL()))
	}

	if !cfg.ShowQR {
		return
	}
	fmt.Fprintln(w)
	qrterminal.GenerateWithConfig(url, qrterminal.Config{
		Level:          qrterminal.M,
		Writer:         w,
		HalfBlocks:     true,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
		QuietZone:      1,
	})
}
