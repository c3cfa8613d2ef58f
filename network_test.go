package plant_gan

import (
	"testing"

	"gorgonia.org/gorgonia"
)

func TestNetworkFeedDropout(t *testing.T) {
	g := gorgonia.NewGraph()
	rng := rand1337()
	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 4), gorgonia.WithName("input"))
	net := &Network{
		Name: "dropout_net",
		Layers: []*Layer{
			linearLayer(g, "dropout_net_fc", 4, 100, Rectify, rng),
			{Type: LayerDropout, Activation: NoActivation},
		},
	}
	if err := net.Fwd(input, 2); err != nil {
		t.Fatal(err)
	}
	masks := net.Masks()
	if len(masks) != 1 {
		t.Fatalf("Network should have 1 mask, but got %d", len(masks))
	}
	if net.Params().Len() != 2 {
		t.Errorf("Network should have 2 learnables, but got %d", net.Params().Len())
	}

	if err := net.FeedDropout(rng, 0.5); err != nil {
		t.Fatal(err)
	}
	kept := 0
	data := masks[0].Value().Data().([]float64)
	for _, v := range data {
		switch v {
		case 0:
		case 2:
			kept++
		default:
			t.Fatalf("Mask value should be 0 or 1/keep, but got %f", v)
		}
	}
	if kept == 0 || kept == len(data) {
		t.Errorf("Mask with keep=0.5 should drop some and keep some values, kept %d of %d", kept, len(data))
	}

	if err := net.FeedDropout(rng, 1.0); err != nil {
		t.Fatal(err)
	}
	for _, v := range masks[0].Value().Data().([]float64) {
		if v != 1 {
			t.Fatalf("Mask with keep=1 should be all ones, but got %f", v)
		}
	}

	for _, keep := range []float64{0, -0.1, 1.5} {
		if err := net.FeedDropout(rng, keep); err == nil {
			t.Errorf("Keep probability %f should be rejected", keep)
		}
	}
}

func TestNetworkEmpty(t *testing.T) {
	g := gorgonia.NewGraph()
	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 4), gorgonia.WithName("input"))
	if err := (&Network{Name: "empty"}).Fwd(input, 2); err == nil {
		t.Error("Network without layers should be rejected")
	}
	if err := (&Network{Name: "no_weights", Layers: []*Layer{{Type: LayerLinear}}}).Fwd(input, 2); err == nil {
		t.Error("Linear layer without weights should be rejected")
	}
}
